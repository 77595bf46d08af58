package service

type orderResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type tickerResponse struct {
	TradeID int64  `json:"trade_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Volume  string `json:"volume"`
	Time    string `json:"time"`
	Message string `json:"message"`
}
