// Package misc keeps build time information.
package misc

// Values are replaced at link time, see Taskfile.
var (
	appName = "img2webp"
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
