package main

import "github.com/JakeFAU/job-listing-ingest/cmd"

func main() {
	cmd.Execute()
}
