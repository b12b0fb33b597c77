// Package misc keeps build time information.
package misc

// Set with -ldflags "-X vbook/misc.version=... -X vbook/misc.gitHash=..."
var (
	appName = "vbook"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
