package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/plan-systems/klog"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/catalog"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/deps"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/expr"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/gen"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

var (
	dbPath  = flag.String("db", "", "catalog db path (empty for in-memory)")
	save    = flag.Bool("save", false, "write generated tokens and taxonomies back to the catalog")
	maxToks = flag.Int("max-tokens", 0, "upper bound on generated token count (0 for default)")
)

func main() {

	flag.Set("logtostderr", "true")
	flag.Set("v", "2")

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	fset.Set("v", "2")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	flag.Parse()

	cmd := flag.Arg(0)
	algPath := flag.Arg(1)
	if cmd == "" || algPath == "" {
		fmt.Fprintln(os.Stderr, "usage: tokenforge [flags] validate|trace|generate <algorithm.json>")
		os.Exit(2)
	}

	if err := run(cmd, algPath); err != nil {
		klog.Errorf("%v", err)
		klog.Flush()
		os.Exit(1)
	}

	klog.Flush()
}

func run(cmd, algPath string) error {
	buf, err := os.ReadFile(algPath)
	if err != nil {
		return err
	}
	alg, err := tokens.UnmarshalAlgorithm(buf)
	if err != nil {
		return err
	}

	store, err := catalog.OpenCatalog(catalog.Opts{DbPathName: *dbPath})
	if err != nil {
		return err
	}
	defer store.Close()

	reg := vars.NewRegistry()
	if err := reg.Refresh(store); err != nil {
		return err
	}

	switch cmd {
	case "validate":
		return runValidate(alg, store, reg)
	case "trace":
		return runTrace(alg, reg)
	case "generate":
		return runGenerate(alg, store, reg)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func runValidate(alg *tokens.Algorithm, store tokens.Store, reg *vars.Registry) error {
	dims, err := store.GetDimensions()
	if err != nil {
		return err
	}

	results := alg.Validate(dims)
	results = append(results, deps.ValidateFormulaDependencies(alg, reg)...)

	for _, r := range results {
		switch r.Type {
		case tokens.SeverityError:
			klog.Errorf("%s", r.Message)
		case tokens.SeverityWarning:
			klog.Warningf("%s", r.Message)
		default:
			klog.Infof("%s", r.Message)
		}
	}

	graph, err := deps.AnalyzeFormulaDependencies(alg, reg)
	if err != nil {
		return err
	}
	return printJSON(graph)
}

func runTrace(alg *tokens.Algorithm, reg *vars.Registry) error {
	trace := deps.GenerateExecutionTrace(alg, expr.Bindings{}, reg)
	return printJSON(trace)
}

func runGenerate(alg *tokens.Algorithm, store tokens.Store, reg *vars.Registry) error {
	existing, err := store.GetTokens()
	if err != nil {
		return err
	}
	collections, err := store.GetCollections()
	if err != nil {
		return err
	}
	taxonomies, err := store.GetTaxonomies()
	if err != nil {
		return err
	}
	dims, err := store.GetDimensions()
	if err != nil {
		return err
	}

	g := gen.NewGenerator(reg)
	result, err := g.GenerateTokens(alg, existing, collections, taxonomies, dims, gen.Options{
		PersistTaxonomies: *save,
		MaxTokens:         *maxToks,
	})
	if err != nil {
		return err
	}

	for _, msg := range result.Errors {
		klog.Warningf("%s", msg)
	}
	klog.V(2).Infof("generated %d tokens", len(result.Tokens))

	if *save {
		if err := store.SetTokens(append(existing, result.Tokens...)); err != nil {
			return err
		}
		if len(result.NewTaxonomies) > 0 || len(result.UpdatedTaxonomies) > 0 {
			if err := store.SetTaxonomies(mergeTaxonomies(taxonomies, result)); err != nil {
				return err
			}
		}
		if err := store.SaveAlgorithm(alg); err != nil {
			return err
		}
	}

	return printJSON(result)
}

func mergeTaxonomies(have []tokens.Taxonomy, result *gen.Result) []tokens.Taxonomy {
	out := append([]tokens.Taxonomy{}, have...)
	for _, updated := range result.UpdatedTaxonomies {
		for i := range out {
			if out[i].ID == updated.ID {
				out[i] = updated
				break
			}
		}
	}
	return append(out, result.NewTaxonomies...)
}

func printJSON(v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}
