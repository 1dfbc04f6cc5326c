package main

// Build-time version identity, injected via -ldflags.
var commitHash = "dev"
