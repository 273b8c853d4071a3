package detect_test

import (
	"fmt"

	"dteintake/internal/detect"
)

func ExampleDetector_Detect() {
	d := detect.NewDefaultDetector()

	res := d.Detect(map[string]any{
		"numero_factura": "F-2026-0042",
		"fecha":          "15/09/2026",
		"proveedor":      "Ferreteria La Palma",
		"total":          "22.60",
	})

	fmt.Println(res.Format, res.Level, res.Confidence)
	fmt.Println("total key:", res.TotalKey)
	// Output:
	// GENERIC_FLAT HIGH 1
	// total key: total
}
