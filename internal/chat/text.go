package chat

// WelcomeText greets the user once the engine is loaded.
const WelcomeText = `This chat simulator has a built in Simplified Chinese IME. You can type pinyin phrases, other text, or /commands.
Try "wo xiang he guozhi" or "woxiangheguozhi11" (...one one).
Try /help or /about.`

// HelpText is shown for /help.
const HelpText = `Help

Pinyin Tips:
  - Use lowercase.
  - Omit tone marks. For á, type a
  - Umlaut is special. For ü, type v
  - For choices like (1喝 2和 3河), pick with numbers or space
  - Send with return or enter.

Example:
  "woxiang he guozhi", plus return, makes "我想喝果汁"

Slash Commands: /help /about /clear`

// AboutText is shown for /about.
const AboutText = `About

How does this work?
  demo source code on GitHub: https://github.com/samblenny/hanzi_ime/tree/master/wasm_demo/
  project README on GitHub: https://github.com/samblenny/hanzi_ime/tree/master/README.md
  background: https://en.wikipedia.org/wiki/Input_method`
