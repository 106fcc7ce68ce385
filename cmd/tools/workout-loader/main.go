// cmd/tools/workout-loader/main.go
//
// workout-loader prepares workout data for the insights server:
//
//	workout-loader convert --input workouts.csv --output workouts.jsonl
//	workout-loader load --input workouts.jsonl
//	workout-loader create-index
//	workout-loader populate-index --input workouts.jsonl
//	workout-loader delete-index
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

// Options groups the sub-commands. Struct tags are read by go-flags.
type Options struct {
	Config string `short:"f" long:"config" description:"config YAML path (defaults to configs/config.yaml)"`

	Convert  ConvertCmd  `command:"convert" description:"Convert a workout CSV export to JSON lines"`
	Load     LoadCmd     `command:"load" description:"Upsert JSON line records into the workouts table"`
	Create   CreateCmd   `command:"create-index" description:"Create the search index or embeddings table"`
	Populate PopulateCmd `command:"populate-index" description:"Embed records and write them to the search index"`
	Delete   DeleteCmd   `command:"delete-index" description:"Delete the search index or embeddings table"`
}

var opts Options

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		// flags.Default prints the error
		os.Exit(1)
	}
}
