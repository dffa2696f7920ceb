package version

// Version is the Major.Minor.Patch tag from GIT, injected at build
// time via -ldflags - else 'dev' as a default
var Version string = "dev"
