package conversation

import (
	"fmt"

	"schedbot/internal/schedule"
)

const (
	textWelcome     = "Welcome to the Message Scheduler Bot!\n\nWhat would you like to do?"
	textAskBody     = "Please enter the message you want to schedule:"
	textEmptyBody   = "Message text cannot be empty. Please enter the message you want to schedule:"
	textBadDay      = "⚠️ Invalid day. Please choose a day of the week:"
	textAskHour     = "Please enter the hour (0-23):"
	textBadHour     = "⚠️ Invalid hour. Please enter a number between 0 and 23:"
	textNaNHour     = "⚠️ Invalid input. Please enter a number between 0 and 23:"
	textAskMinute   = "Please enter the minute (0-59):"
	textBadMinute   = "⚠️ Invalid minute. Please enter a number between 0 and 59:"
	textNaNMinute   = "⚠️ Invalid input. Please enter a number between 0 and 59:"
	textTesting     = "Sending test message to the target chat..."
	textTestOK      = "✅ Test message sent successfully!"
	textCancelled   = "Operation cancelled."
	textExpired     = "This menu has expired. Use /start to begin again."
	textPendingGone = "The pending message no longer exists. Use /start to schedule it again."
	textNoTarget    = "I couldn't identify a target chat. Please forward a message from a chat or send a numeric chat ID."
	textNoTargetYes = " Type 'yes' to schedule the pending message anyway."
	textProceed     = "Would you like to proceed with scheduling anyway? Use /start to try again or type 'yes' to continue."
	textAccessHelp  = "Make sure the bot can reach the target:\n" +
		"• Private chat: the user must have started a conversation with the bot\n" +
		"• Group: the bot must be a member\n" +
		"• Channel: the bot must be an administrator"
)

func textBodyAccepted(body string) string {
	return fmt.Sprintf("Your message: %s\n\nOn which day of the week should it be sent?", schedule.Truncate(body, 50))
}

func textDaySelected(d schedule.Day) string {
	return fmt.Sprintf("Selected day: %s", d)
}

func textAskTarget(sess Session) string {
	head := fmt.Sprintf("Scheduled for every %s at %s.", sess.Day, schedule.FormatClock(sess.Hour, sess.Minute))
	if sess.SelfTarget {
		return head + "\n\nSend any message to confirm, and it will be delivered to you."
	}
	return head + "\n\nNow forward any message from the target chat, or send its numeric chat ID.\n\n" + textAccessHelp
}

func textTestFailed(err error) string {
	return fmt.Sprintf("❌ Failed to send test message: %s\n\n%s\n\n%s", schedule.ErrorDetail(err), textAccessHelp, textProceed)
}

func textScheduled(def schedule.Definition) string {
	return fmt.Sprintf("✅ Message scheduled successfully!\nIt will be sent every %s at %s to %s.", def.Day, def.Clock(), def.TargetLabel)
}
