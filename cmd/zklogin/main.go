package main

import (
	"fmt"
	"os"

	"github.com/yawdotio/totalbeginers-Suitters/login"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n(%v)\n", login.UserMessage(err), err)
		os.Exit(1)
	}
}
