package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var app struct {
	debug  bool
	config string
	env    string
}

func parseFlags() {
	flagset := flag.NewFlagSet("ledgerd", flag.ExitOnError)
	flagset.BoolVar(&app.debug, "debug", false, "set debug mode")
	flagset.StringVar(&app.config, "config", "config.yaml", "YAML configuration")
	flagset.StringVar(&app.env, "env", ".env", "dotenv file loaded before the configuration")
	err := flagset.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	parseFlags()

	err := godotenv.Load(app.env)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(err)
	}

	cfg, err := LoadConfig(app.config)
	if err != nil {
		log.Fatal(err)
	}

	if app.debug {
		gin.SetMode(gin.DebugMode)
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	fx.New(Module(cfg)).Run()
}
