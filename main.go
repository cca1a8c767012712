package main

import "github.com/samuelfneumann/erl/examples"

func main() {
	examples.HybridERLTD3Pendulum()
}
