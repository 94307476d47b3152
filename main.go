package main

import "escalator/internal/app"

func main() {
	app.Main()
}
