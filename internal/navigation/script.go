package navigation

// Page contract of the eNotifikasi portal. These identifiers belong to the
// portal, not to us; if the portal changes its markup they change here.
const (
	DefaultLoginURL = "http://enotifikasi.moh.gov.my/Login.aspx"

	usernameFieldID  = "txtUsrCd"
	passwordFieldID  = "txtUsrPwd"
	loginButtonID    = "btnLogin"
	downloadMenuText = "Muat Turun"
	downloadPageLink = "a[href='/UserInterface/Download/Download.aspx']"
	contentFrameTag  = "iframe"
	allFieldsCheckID = "ctl00_ContentPlaceHolder1_boolCheckAll"
	exportButtonID   = "ctl00_ContentPlaceHolder1_btnSearch"
)

// submitLoginIndex is the position of "submit login" in ExportScript.
const submitLoginIndex = 3

// PastLogin reports whether a failure at step index of ExportScript happened
// after the login form was submitted.
func PastLogin(index int) bool {
	return index > submitLoginIndex
}

// ExportScript returns the fixed login-and-export path. The last step
// presses the export button inside the download frame and is the trigger.
func ExportScript(loginURL, username, secret string) []Step {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	return []Step{
		{
			Name:   "open login page",
			Action: ActionNavigate,
			URL:    loginURL,
		},
		{
			Name:      "enter username",
			Action:    ActionFill,
			Locator:   Locator{Strategy: ByID, Value: usernameFieldID},
			Condition: Present,
			Text:      username,
		},
		{
			Name:      "enter password",
			Action:    ActionFill,
			Locator:   Locator{Strategy: ByID, Value: passwordFieldID},
			Condition: Present,
			Text:      secret,
			Secret:    true,
		},
		{
			Name:      "submit login",
			Action:    ActionClick,
			Locator:   Locator{Strategy: ByID, Value: loginButtonID},
			Condition: Clickable,
		},
		{
			Name:      "hover download menu",
			Action:    ActionHover,
			Locator:   Locator{Strategy: ByLinkText, Value: downloadMenuText},
			Condition: Visible,
		},
		{
			Name:      "open download page",
			Action:    ActionClick,
			Locator:   Locator{Strategy: ByCSS, Value: downloadPageLink},
			Condition: Clickable,
		},
		{
			Name:      "enter download frame",
			Action:    ActionEnterFrame,
			Locator:   Locator{Strategy: ByTagName, Value: contentFrameTag},
			Condition: Present,
		},
		{
			Name:      "select all fields",
			Action:    ActionClick,
			Locator:   Locator{Strategy: ByID, Value: allFieldsCheckID},
			Condition: Clickable,
		},
		{
			Name:      "request export",
			Action:    ActionClick,
			Locator:   Locator{Strategy: ByID, Value: exportButtonID},
			Condition: Clickable,
			Trigger:   true,
		},
	}
}
