package chatadapter

// thinkingMessages rotates through the security-awareness tip bank shown
// while a dispatch is in flight, grounded on the original's
// THINKING_MESSAGES (bot_messages.py) — trimmed to a representative slice
// of its categories rather than the full ~90-entry bank.
var thinkingMessages = []string{
	// Password security
	"🔐 Security tip: Rotate your passwords every 90 days!",
	"🔑 Remember: Never reuse the same password across multiple accounts!",
	"🛡️ Pro tip: Use a passphrase instead of a password - longer and easier to remember!",

	// Phishing & email security
	"📧 Never click links from unknown senders - always verify first!",
	"🎣 Phishing tip: Hover over links to see the real destination before clicking!",
	"🚨 Check the sender's email address carefully - attackers use look-alike domains!",

	// Multi-factor authentication
	"🔐 Always enable MFA on all your accounts - it blocks 99% of attacks!",
	"🛡️ MFA fatigue attacks are real - never approve unexpected MFA prompts!",

	// Endpoint security
	"💻 Never disable your antivirus or EDR - they're your first line of defense!",
	"🔒 Lock your workstation when stepping away - every single time!",

	// Social engineering awareness
	"🎭 Social engineering is the #1 attack method - trust your instincts!",
	"🚨 If something feels urgent and unusual, it's probably a scam!",

	// Incident response
	"🚨 Spot something suspicious? Report it immediately - don't wait!",
	"⚡ Speed matters in incident response - early detection saves millions!",

	// SOC-specific operational messages
	"🛡️ Cross-referencing threat intelligence databases for your query...",
	"🔍 Diving deep into CrowdStrike telemetry and security logs...",
	"📊 Analyzing patterns across the security ecosystem...",
	"🎯 Correlating events across multiple security platforms...",
	"🔬 Examining incident timelines and forensic artifacts...",
	"🚀 Querying endpoints across the fleet for threat indicators...",
}

// doneMessages rotates through completion-line prefixes, grounded on the
// original's DONE_MESSAGES (bot_messages.py) — trimmed to a representative
// slice.
var doneMessages = []string{
	"✅ **Done!**",
	"🎉 **Complete!**",
	"⚡ **Finished!**",
	"🎯 **Nailed it!**",
	"🚀 **Mission accomplished!**",
	"🏆 **Success!**",
	"🌟 **All set!**",
	"🔥 **Delivered!**",
	"🛡️ **Investigation complete!**",
	"🔬 **Analysis complete!**",
	"🔍 **Case closed!**",
}
