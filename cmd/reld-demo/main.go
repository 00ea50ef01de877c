// Command reld-demo wires up a kernel instance, creates suppliers, parts
// and shipments tables, inserts a few rows, and logs the result of a
// join of suppliers with shipments.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"reld/bootstrap"
	"reld/catalog"
	"reld/config"
	"reld/expr"
	"reld/query"
	"reld/rtype"
	"reld/value"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML kernel configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("reld-demo: load config: %v", err)
	}

	ctx := context.Background()
	k, err := bootstrap.Start(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		log.Fatalf("reld-demo: start kernel: %v", err)
	}
	defer k.Stop()

	if err := runDemo(ctx, k); err != nil {
		log.Fatalf("reld-demo: %v", err)
	}
}

func runDemo(ctx context.Context, k *bootstrap.Kernel) error {
	sess, tx, berr := k.BeginTx(ctx)
	if berr != nil {
		return fmt.Errorf("begin: %w", berr)
	}

	suppliers, cerr := k.Catalog.CreateTable(tx, "suppliers", []rtype.Attr{
		{Name: "sno", Type: rtype.HandleString},
		{Name: "sname", Type: rtype.HandleString},
		{Name: "city", Type: rtype.HandleString},
	}, [][]string{{"sno"}})
	if cerr != nil {
		return fmt.Errorf("create suppliers: %w", cerr)
	}

	parts, cerr := k.Catalog.CreateTable(tx, "parts", []rtype.Attr{
		{Name: "pno", Type: rtype.HandleString},
		{Name: "pname", Type: rtype.HandleString},
	}, [][]string{{"pno"}})
	if cerr != nil {
		return fmt.Errorf("create parts: %w", cerr)
	}

	shipments, cerr := k.Catalog.CreateTable(tx, "shipments", []rtype.Attr{
		{Name: "sno", Type: rtype.HandleString},
		{Name: "pno", Type: rtype.HandleString},
		{Name: "qty", Type: rtype.HandleInteger},
	}, [][]string{{"sno", "pno"}})
	if cerr != nil {
		return fmt.Errorf("create shipments: %w", cerr)
	}

	for _, row := range []*value.Value{
		stringTuple(map[string]string{"sno": "S1", "sname": "Smith", "city": "London"}),
		stringTuple(map[string]string{"sno": "S2", "sname": "Jones", "city": "Paris"}),
	} {
		if ierr := suppliers.Insert(tx, row); ierr != nil {
			return fmt.Errorf("insert supplier: %w", ierr)
		}
	}
	for _, row := range []*value.Value{
		stringTuple(map[string]string{"pno": "P1", "pname": "Nut"}),
		stringTuple(map[string]string{"pno": "P2", "pname": "Bolt"}),
	} {
		if ierr := parts.Insert(tx, row); ierr != nil {
			return fmt.Errorf("insert part: %w", ierr)
		}
	}

	sh1 := value.NewTuple()
	value.TupleSet(sh1, "sno", textVal("S1"))
	value.TupleSet(sh1, "pno", textVal("P1"))
	value.TupleSet(sh1, "qty", intValOf(300))
	if ierr := shipments.Insert(tx, sh1); ierr != nil {
		return fmt.Errorf("insert shipment: %w", ierr)
	}

	joined := query.Join(asTableRef(suppliers), asTableRef(shipments))
	result, _, jerr := query.Open(k.Env, nil, tx, joined)
	if jerr != nil {
		return fmt.Errorf("open join: %w", jerr)
	}
	defer result.Close()

	k.Logger.Info("supplier/shipment join results:")
	for {
		tup, nerr := result.Next()
		if nerr != nil || tup == nil {
			break
		}
		k.Logger.InfoMeta("row", tupleToMap(tup))
	}

	if cerr := k.Txn.Commit(sess); cerr != nil {
		return fmt.Errorf("commit: %w", cerr)
	}

	_ = catalog.Catalog{} // demo only touches the catalog through k.Catalog above
	return nil
}

func stringTuple(fields map[string]string) *value.Value {
	t := value.NewTuple()
	for name, s := range fields {
		value.TupleSet(t, name, textVal(s))
	}
	return t
}

func textVal(s string) *value.Value {
	v := value.New()
	value.SetBytes(v, []byte(s))
	return v
}

func intValOf(i int64) *value.Value {
	v := value.New()
	value.SetInt(v, i)
	return v
}

func asTableRef(t *query.BaseTable) expr.Node {
	return &expr.TableRef{Table: t}
}

func tupleToMap(tup *value.Value) map[string]interface{} {
	names, _ := value.TupleAttrs(tup)
	out := make(map[string]interface{}, len(names))
	for _, n := range names {
		v, err := value.TupleGet(tup, n)
		if err != nil {
			continue
		}
		if b, berr := value.Bytes(v); berr == nil {
			out[n] = string(b)
			continue
		}
		if i, ierr := value.Int(v); ierr == nil {
			out[n] = i
			continue
		}
		out[n] = "?"
	}
	return out
}
