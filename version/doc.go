// Package version reports the modelkit build. Version, commit and build
// time are stamped at link time:
//
//	go build -ldflags "-X github.com/kbukum/modelkit/version.Version=0.3.0" ./cmd/modelkit
//
// Unstamped builds fall back to the VCS settings recorded by the Go
// toolchain.
package version
