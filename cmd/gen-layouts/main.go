package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/detailtree/pkg/domain"
	"github.com/aretw0/detailtree/pkg/dsl"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"gopkg.in/yaml.v3"
)

func main() {
	targetDir := "examples/lexicon/templates"
	if len(os.Args) > 1 {
		targetDir = os.Args[1]
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		panic(err)
	}

	fmt.Printf("Generating lexicon layouts in: %s\n", targetDir)

	// No versioning: plain template documents on disk.
	repo, err := loam.Init(targetDir, loam.WithVersioning(false))
	check(err)

	ctx := context.TODO()
	for _, doc := range lexicon().Docs() {
		nodes, err := frontmatterNodes(doc.Nodes)
		check(err)

		meta := core.Metadata{
			"kind":  doc.Kind,
			"class": string(doc.Class),
			"name":  doc.Name,
			"nodes": nodes,
		}
		if doc.Type != "" {
			meta["type"] = doc.Type
		}
		err = repo.Save(ctx, core.Document{
			ID:       strings.ToLower(fmt.Sprintf("%s-%s-%s.md", doc.Kind, doc.Class, doc.Name)),
			Content:  fmt.Sprintf("The %s %s of %s.", doc.Name, doc.Kind, doc.Class),
			Metadata: meta,
		})
		check(err)
	}

	fmt.Println("Done. Verify contents in", targetDir)
}

// lexicon declares the sample dictionary layouts.
func lexicon() *dsl.Builder {
	b := dsl.New()

	entry := b.Layout("Entry", "default")
	entry.Field("CitationForm").Key("cf").Label("Citation Form")
	entry.Field("Homograph").Key("hom").IfData().Validator("int")
	entry.Object("Pronunciation").Key("pron").GhostSpec(domain.GhostSpec{Field: "Form", Label: "Pronunciation"})
	senses := entry.Header("Senses").Key("senses-hdr").Weight(domain.WeightHeavy)
	senses.Sequence("Senses").Key("senses").IfData()
	entry.CustomFields().Key("custom")

	b.Layout("Pronunciation", "default").Field("Form").Key("form")

	sense := b.Layout("Sense", "default")
	sense.Field("Gloss").Key("gloss").WS("en")
	sense.Field("Definition").Key("def").IfData()
	sense.Sequence("Subsenses").Key("subsenses").IfData().Indent()

	brief := b.Layout("Sense", "brief")
	brief.Field("Gloss").Key("gloss").WS("en")
	return b
}

// frontmatterNodes turns template nodes into the plain maps of a document's
// frontmatter.
func frontmatterNodes(nodes []*domain.TemplateNode) ([]any, error) {
	data, err := yaml.Marshal(nodes)
	if err != nil {
		return nil, err
	}
	var out []any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
