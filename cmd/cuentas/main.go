// Package main is the single-binary entrypoint for Cuentas.
package main

import "github.com/cuentas-labs/cuentas/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
