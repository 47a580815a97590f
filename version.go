package concierge

// Version is the release of the module, overridden at link time with
// -ldflags "-X github.com/aretw0/concierge.Version=...".
var Version = "dev"
