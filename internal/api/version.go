package api

import "fmt"

// Build metadata, set with
// -ldflags "-X github.com/Starzy87/stake-mines-backend/internal/api.EngineVersion=..."
var (
	EngineVersion = "dev"
	GitCommit     = "unknown"
	BuildTime     = "unknown"
)

// GetVersionInfo returns the current version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("minesd %s (commit %s, built %s)", v.EngineVersion, v.GitCommit, v.BuildTime)
}
