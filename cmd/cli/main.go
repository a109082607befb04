package main

import (
	"fmt"
	"os"

	"github.com/crucial707/autosignin/cmd/cli/auth"
	"github.com/crucial707/autosignin/cmd/cli/root"
	"github.com/crucial707/autosignin/cmd/cli/signin"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	signin.InitSignIn(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
