/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "ragline/cmd"

func main() {
	cmd.Execute()
}
