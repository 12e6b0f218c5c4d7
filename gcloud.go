// The gcloud command line tool. Each Google Cloud service is a subcommand;
// see cmd/ for the command tree.
package main

import "github.com/gcloudkit/gcloud/cmd"

func main() {
	cmd.Execute()
}
