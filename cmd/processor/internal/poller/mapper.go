package poller

// MapperVersion identifies the field mapping sent with every delivery.
const MapperVersion = "v1"

// DefaultMapper maps canonical CSV columns to downstream document elements.
var DefaultMapper = map[string]string{
	"symbol":             "Simbolo",
	"price":              "Preco",
	"change_24h_pct":     "VariacaoPercentual24h",
	"change_24h_abs":     "VariacaoAbsoluta24h",
	"timestamp":          "DataHora",
	"name":               "Nome",
	"rank":               "Rank",
	"market_cap":         "CapitalizacaoMercado",
	"circulating_supply": "FornecimentoCirculante",
	"volume_24h":         "Volume24h",
	"category":           "Categoria",
}
