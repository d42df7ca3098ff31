package main

import "github.com/richardliu001/wallet-ledger/internal/cli"

func main() {
	cli.Execute()
}
