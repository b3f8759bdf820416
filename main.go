package main

import (
	"github.com/mkbrennan/ditdah/cmd"
	"github.com/mkbrennan/ditdah/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
