package detect

import "dteintake/pkg/models"

// DefaultFingerprints returns the built-in fingerprints in their
// registration order: official DTE, informal DTE exports, PDF synthesized
// documents and finally the generic flat heuristic.
func DefaultFingerprints() []Fingerprint {
	return []Fingerprint{
		DTEStandardFingerprint(),
		DTEVariantFingerprint(),
		PDFExtractedFingerprint(),
		GenericFlatFingerprint(),
	}
}

// DTEStandardFingerprint matches the Ministerio de Hacienda JSON schema.
func DTEStandardFingerprint() StructuralFingerprint {
	return StructuralFingerprint{
		Format:       models.FormatDTEStandard,
		RequiredKeys: []string{"identificacion", "emisor", "receptor", "cuerpoDocumento", "resumen"},
		NestedChecks: map[string][]string{
			"identificacion": {"version", "tipoDte", "numeroControl", "codigoGeneracion", "fecEmi"},
			"emisor":         {"nit", "nombre"},
			"resumen":        {"totalPagar"},
		},
		OptionalKeys: []string{
			"documentoRelacionado", "otrosDocumentos", "ventaTercero",
			"extension", "apendice", "selloRecibido", "firmaElectronica",
		},
		ItemsKey:  "cuerpoDocumento",
		TotalKeys: []string{"resumen.totalPagar", "resumen.montoTotalOperacion"},
		TypeChecks: []TypeCheck{
			{Path: "identificacion.version", Kind: KindNumber},
			{Path: "identificacion.tipoDte", Kind: KindString},
			{Path: "cuerpoDocumento", Kind: KindArray},
			{Path: "resumen", Kind: KindObject},
		},
	}
}

// DTEVariantFingerprint matches flattened DTE exports that keep the
// official identifiers at the root.
func DTEVariantFingerprint() StructuralFingerprint {
	return StructuralFingerprint{
		Format:       models.FormatDTEVariant,
		RequiredKeys: []string{"numeroControl", "codigoGeneracion", "emisor", "items"},
		NestedChecks: map[string][]string{
			"emisor": {"nit", "nombre"},
		},
		OptionalKeys: []string{"tipoDte", "fechaEmision", "receptor", "selloRecibido", "subTotal", "totalIva"},
		ItemsKey:     "items",
		TotalKeys:    []string{"totalPagar", "montoTotal"},
		TypeChecks: []TypeCheck{
			{Path: "items", Kind: KindArray},
			{Path: "emisor", Kind: KindObject},
			{Path: "totalPagar", Kind: KindPresent},
		},
	}
}

// PDFExtractedFingerprint matches documents synthesized by the PDF extractor.
func PDFExtractedFingerprint() StructuralFingerprint {
	return StructuralFingerprint{
		Format:       models.FormatPDFExtracted,
		RequiredKeys: []string{models.PDFMarkerKey},
		OptionalKeys: []string{
			models.PDFKeyControlNumber, models.PDFKeyGenerationCode, models.PDFKeyIssueDate,
			models.PDFKeySupplierName, models.PDFKeySupplierNIT, models.PDFKeySubtotal, models.PDFKeyTax,
		},
		TotalKeys: []string{models.PDFKeyTotal},
		TypeChecks: []TypeCheck{
			{Path: models.PDFMarkerKey, Kind: KindBool},
			{Path: models.PDFKeyTotal, Kind: KindPresent},
		},
	}
}

// GenericFlatFingerprint recognizes flat invoice-like JSON by key synonyms.
func GenericFlatFingerprint() HeuristicFingerprint {
	return HeuristicFingerprint{
		Format: models.FormatGenericFlat,
		Synonyms: map[string][]string{
			"invoice_number": {
				"numero", "numero_factura", "numero_documento", "num_factura", "folio",
				"invoice_number", "invoice_no", "document_number", "numeroDocumento",
			},
			"date": {"fecha", "fecha_emision", "fecha_factura", "date", "issue_date", "invoice_date", "fecEmi"},
			"supplier": {
				"proveedor", "proveedor_nombre", "nombre_proveedor", "razon_social",
				"emisor", "supplier", "supplier_name", "vendor",
			},
			"total": {
				"total", "monto_total", "total_pagar", "totalPagar", "montoTotal",
				"importe_total", "grand_total", "amount", "total_amount",
			},
		},
		ItemsKeys: []string{"items", "lineas", "detalle", "productos", "line_items"},
		TotalKeys: []string{"total", "monto_total", "total_pagar", "importe_total", "grand_total", "amount"},
	}
}
