package cmd

// Version of this service
var Version = "0.1.0"
