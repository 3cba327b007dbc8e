package main

import (
	"github.com/dwarvesf/icy-funding-backend/internal/server"
)

// @title icy-funding API
// @version 1.0
// @description Deposit addresses, funding confirmation and ICY reward payout.
// @BasePath /api
func main() {
	server.Init()
}
