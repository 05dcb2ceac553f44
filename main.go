package main

import (
	"runtime/debug"

	"github.com/dehost-labs/dehost/cmd"
	"github.com/dehost-labs/dehost/internal/version"
)

// Version is set at release time with -ldflags "-X main.Version=vX.Y.Z".
var Version = "dev"

func main() {
	info, _ := debug.ReadBuildInfo()
	cmd.SetVersion(version.Resolve(Version, info))
	cmd.Execute()
}
