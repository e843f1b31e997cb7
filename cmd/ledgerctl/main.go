// Package main операторская утилита кредитного журнала.
package main

import (
	"os"

	"github.com/magabrotheeeer/credit-ledger/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
