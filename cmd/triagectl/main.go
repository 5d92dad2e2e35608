package main

import "github.com/KBTrotter/ent-triage-system/cmd/triagectl/cmd"

func main() {
	cmd.Execute()
}
