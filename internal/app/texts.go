package app

const msgWelcome = `Welcome to the Solana Trading Bot! 🚀

This bot allows you to interact with your Solana wallet directly from Telegram.

%s

Available commands:
/start - Show this welcome message
/importwallet - Import your Solana wallet
/balance - Check your wallet balance
/send - Send SOL or tokens to another address
/swap - Swap between tokens (via Jupiter)
/price - Check token prices
/help - Show help information

To get started, use /importwallet to connect your wallet.`

const msgHelp = `Solana Trading Bot Help 📚

Commands:
/start - Show welcome message
/importwallet - Import your Solana wallet using private key or seed phrase
/balance - Check your SOL and token balances
/send - Send SOL or tokens to another address
/swap - Swap between tokens using Jupiter
/price - Check current token prices
/cancel - Cancel the current operation
/help - Show this help message

Security Tips:
• Never share your private key or seed phrase with anyone
• Always double-check addresses before sending
• Use small amounts for testing
• The bot encrypts your keys but use at your own risk`

const msgImportWarning = `⚠️ SECURITY WARNING ⚠️

You are about to import your wallet's private key or seed phrase.
This information gives COMPLETE control over your funds.

While we encrypt this data, please understand the risks:
1. Only use this bot if you trust the developers
2. Consider using a separate wallet with limited funds
3. NEVER share your private key or seed phrase with anyone else

To proceed, please send your private key or seed phrase.
To cancel, type /cancel`

const msgImported = "✅ Wallet imported successfully!\n\n" +
	"Your Solana address: `%s`\n\n" +
	"You can now use /balance to check your balance or /send to transfer funds."

const msgNeedWallet = "You need to import a wallet first. Use /importwallet"

const msgGenericError = "An error occurred. Please try again or contact support."

const promptSendSOL = "Please enter the transfer in this format:\n" +
	"`address amount`\n\n" +
	"Example:\n" +
	"`9xDUcfd8vD88JLyVeLXsZQzVR5V3vWLU2qVEYKBQBfaw 0.1`\n\n" +
	"This will send 0.1 SOL to the specified address.\n" +
	"To cancel, type /cancel"

const promptSendToken = "Please enter the transfer in this format:\n" +
	"`address token amount`\n\n" +
	"The token can be a symbol or a mint address.\n\n" +
	"Example:\n" +
	"`9xDUcfd8vD88JLyVeLXsZQzVR5V3vWLU2qVEYKBQBfaw USDC 1.5`\n\n" +
	"To cancel, type /cancel"

const promptSwap = "Please enter the swap in this format:\n" +
	"`from_token to_token amount`\n\n" +
	"Example:\n" +
	"`SOL USDC 0.1`\n\n" +
	"To cancel, type /cancel"

const msgSendSuccess = "✅ Transaction successful!\n\n" +
	"Amount: %s SOL\n" +
	"Recipient: %s\n" +
	"Transaction ID: [%s](https://explorer.solana.com/tx/%s)"

const msgTokenSendSuccess = "✅ Token transaction successful!\n\n" +
	"Amount: %s %s\n" +
	"Recipient: %s\n" +
	"Transaction ID: [%s](https://explorer.solana.com/tx/%s)"

const msgSwapSuccess = "✅ Swap successful!\n\n" +
	"Swapped: %s %s → %s %s\n" +
	"Transaction ID: [%s](https://explorer.solana.com/tx/%s)"
