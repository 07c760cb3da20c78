package main

import "github.com/perarneng/gmail2s3/cmd"

func main() {
	cmd.Execute()
}
