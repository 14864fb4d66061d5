package telegram

// handleCallback answers the callback query and, for the expand button,
// asks the assistant for a detailed version of the answer and edits it
// into the original message.
func (b *bot) handleCallback(cb *CallbackQuery) {
	if err := b.client.AnswerCallbackQuery(b.ctx, AnswerCallbackQueryRequest{CallbackQueryID: cb.ID}); err != nil {
		b.logger.Debug("answerCallbackQuery failed", "callback_id", cb.ID, "error", err)
	}

	if cb.Data != callbackDetailedAnswer || cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	if err := b.client.SendChatAction(b.ctx, chatID, "typing"); err != nil {
		b.logger.Debug("sendChatAction failed", "error", err)
	}

	info := chatInfo(cb.Message)
	info.TelegramID = cb.From.ID
	info.Username = cb.From.Username
	info.FirstName = cb.From.FirstName
	info.LastName = cb.From.LastName

	reply, err := b.sessions.Send(b.ctx, info, textDetailedPrompt)
	if err != nil {
		b.logger.Error("detailed answer failed", "chat_id", chatID, "error", err)
		b.send(chatID, b.userErrorText(err))
		return
	}

	chunks := splitMessage(reply, b.config.MaxMessageLength)
	b.editOrSend(chatID, cb.Message.MessageID, chunks[0], nil)
	for _, chunk := range chunks[1:] {
		b.send(chatID, chunk)
	}
}
