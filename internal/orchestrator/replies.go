package orchestrator

// Fixed user-facing replies. Failures always surface as one of these; raw
// internal error detail never reaches the user.
const (
	replyWelcomeFormat = "🌟 سلام %s عزیز، خوش آمدید! 🌟\n\n" +
		"به ربات پشتیبان خدمات پاس پراپ خوش آمدید.\n\n" +
		"✅ ما با ربات هوش مصنوعی پیشرفته، حساب پراپ شما را در کمتر از یک هفته پاس می‌کنیم.\n\n" +
		"💡 چه سوالی دارید؟ می‌توانید از دکمه‌های زیر استفاده کنید یا سوال خود را بنویسید."

	defaultWelcomeName = "کاربر"

	replyChoose     = "لطفاً انتخاب کنید:"
	replyBackToMain = "به منوی اصلی بازگشتید. لطفاً انتخاب کنید:"

	replyDailyLimit = "⚠️ شما به محدودیت پیام روزانه رسیده‌اید. لطفاً فردا دوباره تلاش کنید."

	replyProcessing = "در حال پردازش سوال شما..."

	replyInsufficientInfo = "❌ متاسفانه اطلاعات کافی برای پاسخ به این سوال ندارم."

	replyProcessingError = "❌ مشکلی در پردازش سوال شما پیش آمد. لطفاً لحظاتی دیگر دوباره تلاش کنید."
)
