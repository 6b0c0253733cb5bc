package main

import "trip-route-service/cmd/routeopt/cmd"

func main() {
	cmd.Execute()
}
