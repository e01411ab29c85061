package main

import "github.com/Tapalogi/game-room/cmd"

func main() {
	cmd.Execute()
}
