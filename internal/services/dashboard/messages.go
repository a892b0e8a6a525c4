package dashboard

// User facing texts.
const (
	statusProviderAbsent = "Wallet no detectada"
	statusConnectError   = "Error conectando wallet: "
	statusConnected      = "Conectado: "
	statusDisconnected   = "Desconectado"
	statusPreparing      = "Preparando transacción..."
	statusSent           = "Transacción enviada: "
	statusConfirmed      = "Transacción confirmada en bloque %d"
	statusReverted       = "Transacción revertida"
	statusSendError      = "Error enviando transacción: "

	logConnected    = "Conectado a %s (%d)"
	logDisconnected = "Usuario desconectado"
	logConnectError = "connectWallet error: "
	logRefreshError = "refreshBalances: "
	logChainError   = "chainChanged error: "
	logSendError    = "sendTx error: "
	logReverted     = "Transacción revertida: "
	logConfirmed    = "Transacción %s confirmada en bloque %d"

	alertConnectFirst     = "Conecta primero la wallet"
	alertInvalidAddress   = "Dirección inválida"
	alertInvalidAmount    = "Cantidad inválida"
	alertUnsupportedToken = "Token no soportado"
)
