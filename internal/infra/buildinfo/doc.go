// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/idbridge/internal/infra/buildinfo.Version=v1.0.0"
//
// The version also appears in the User-Agent of every outbound request.
package buildinfo
