package main

import (
	"context"
	"log"
	"os"
)

func main() {
	ctx := context.TODO()
	err := app.Run(ctx, os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
