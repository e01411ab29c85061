package version

// Version is the current version of game-room.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/Tapalogi/game-room/internal/version.Version=v1.0.0'"
var Version = "dev"
