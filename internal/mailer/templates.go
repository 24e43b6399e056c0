package mailer

import "fmt"

func VerificationEmail(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "Солнечный Екатеринбург: подтверждение email",
		Body: fmt.Sprintf("Здравствуйте, %s!\n\nПодтвердите адрес электронной почты по ссылке:\n%s\n\n"+
			"Если вы не регистрировались, просто проигнорируйте это письмо.", name, link),
	}
}

func PasswordResetEmail(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Солнечный Екатеринбург: восстановление пароля",
		Body:    fmt.Sprintf("Чтобы задать новый пароль, перейдите по ссылке:\n%s\n\nСсылка действует ограниченное время.", link),
	}
}

// ModerationEmail tells a moderator that a listing waits for review.
func ModerationEmail(to, title, adminURL string) Message {
	return Message{
		To:      to,
		Subject: "Новое объявление на модерации",
		Body:    fmt.Sprintf("Объявление «%s» ожидает проверки.\n\nОткрыть в админке:\n%s", title, adminURL),
	}
}
