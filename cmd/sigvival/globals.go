package main

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/carbocation/sigvival/pipeline"
	"github.com/carbocation/sigvival/signature"
)

type Global struct {
	log           logger
	storageClient *storage.Client

	Site      string
	Company   string
	Email     string
	SnailMail string

	DataRoot     string
	PreviewWidth int
	Examples     []signature.Signature
	CutPoints    []CutPointChoice

	store  Catalog
	runner *pipeline.Runner
}

// Catalog is what the web layer needs from the dataset store, beyond what the
// pipeline reads.
type Catalog interface {
	pipeline.Source
	GeneNames(ctx context.Context) ([]string, error)
	CancerTypes(ctx context.Context) ([]string, error)
	Reload()
}

type logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
