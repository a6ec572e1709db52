package main

import "backlogwatch/internal/app"

func main() {
	app.Main()
}
