package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"citegap/internal/extract"
	"citegap/internal/util"
)

func main() {
	removeReferences := flag.Bool("remove-references", true, "drop everything from the References heading onward")
	removeAbstract := flag.Bool("remove-abstract", true, "drop everything before the Abstract heading")
	removeMarkers := flag.Bool("remove-reference-markers", true, "strip inline citation markers like [12] or <DOI:...>")
	outPath := flag.String("o", "", "output file (stdout when empty)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: extract [flags] <paper.pdf>")
	}

	text, err := extract.Text(flag.Arg(0), extract.Options{
		RemoveReferences:       *removeReferences,
		RemoveAbstract:         *removeAbstract,
		RemoveReferenceMarkers: *removeMarkers,
	})
	if err != nil {
		log.Fatal(err)
	}

	if *outPath == "" {
		fmt.Fprintln(os.Stdout, text)
		return
	}
	if err := util.WriteTextAtomic(*outPath, text+"\n"); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s (%d bytes)", *outPath, len(text)+1)
}
