/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/saifulabidin/fake-pinterest/cmd"

func main() {
	cmd.Execute()
}
