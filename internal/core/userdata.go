package core

// UserData is the full set of user-scoped collections moved by the sync
// protocol. Parent collections (pessoas) always precede the collections
// that reference them (cartoes) when a batch is applied.
type UserData struct {
	Pessoas      []Pessoa      `json:"pessoas"`
	Cartoes      []Cartao      `json:"cartoes"`
	Gastos       []Gasto       `json:"gastos"`
	Recorrencias []Recorrencia `json:"recorrencias"`
	Settings     *UserSettings `json:"settings,omitempty"`
}

// Summary aggregates a user's position for the dashboard.
type Summary struct {
	TotalEmprestado   float64 `json:"total_emprestado"`
	TotalPago         float64 `json:"total_pago"`
	SaldoAberto       float64 `json:"saldo_aberto"`
	ParcelasVencidas  int     `json:"parcelas_vencidas"`
	GastosMesCorrente float64 `json:"gastos_mes_corrente"`
}
