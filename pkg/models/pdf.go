package models

// Keys of the document synthesized from PDF text. The marker key is only ever
// set by the PDF extractor, so JSON inputs cannot trigger the PDF path by
// accident unless they carry it explicitly.
const (
	PDFMarkerKey = "_pdf_extracted"

	PDFKeySourceFile     = "_source_file"
	PDFKeyControlNumber  = "numero_control"
	PDFKeyGenerationCode = "codigo_generacion"
	PDFKeyIssueDate      = "fecha_emision"
	PDFKeySupplierName   = "proveedor_nombre"
	PDFKeySupplierNIT    = "proveedor_nit"
	PDFKeySupplierNRC    = "proveedor_nrc"
	PDFKeySubtotal       = "subtotal"
	PDFKeyTax            = "iva"
	PDFKeyTotal          = "total"
	PDFKeyPageCount      = "paginas"
)
