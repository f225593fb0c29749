package mail

import "fmt"

func verificationEmail(name, link string) (subject, html, text string) {
	subject = "Verify your AniVouch email"

	html = fmt.Sprintf(`<div style="font-family:sans-serif;max-width:480px;margin:0 auto">
<h2>Welcome to AniVouch, %s!</h2>
<p>Confirm your email address to finish setting up your account.</p>
<p><a href="%s" style="display:inline-block;padding:12px 24px;background:#6366f1;color:#fff;text-decoration:none;border-radius:6px">Verify email</a></p>
<p>Or paste this link into your browser:<br>%s</p>
<p>If you didn't create an account, you can ignore this email.</p>
</div>`, name, link, link)

	text = fmt.Sprintf(`Welcome to AniVouch, %s!

Confirm your email address to finish setting up your account:

%s

If you didn't create an account, you can ignore this email.
`, name, link)

	return subject, html, text
}

func passwordResetEmail(name, otp string) (subject, html, text string) {
	subject = "Your AniVouch password reset code"

	html = fmt.Sprintf(`<div style="font-family:sans-serif;max-width:480px;margin:0 auto">
<h2>Password reset</h2>
<p>Hi %s, use this code to reset your password:</p>
<p style="font-size:32px;letter-spacing:8px;font-weight:bold">%s</p>
<p>The code expires shortly. If you didn't request a reset, you can ignore this email.</p>
</div>`, name, otp)

	text = fmt.Sprintf(`Hi %s,

Use this code to reset your AniVouch password: %s

The code expires shortly. If you didn't request a reset, you can ignore this email.
`, name, otp)

	return subject, html, text
}
