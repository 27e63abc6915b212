// Command plpctl drives a listing page against a catalog endpoint and
// prints the settled view after each refinement step.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
