package main

import (
	"flag"
	"log"

	"citegap/internal/dataset"
)

func main() {
	dataDir := flag.String("data-dir", "data/clean", "directory of cleaned .txt records")
	outDir := flag.String("out-dir", "data/dataset", "directory for dataset.csv and dataset.parquet")
	flag.Parse()

	n, err := dataset.Generate(*dataDir, *outDir)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d labeled sentences to %s", n, *outDir)
}
