// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package endpoints holds the Adobe service URLs used by the converter and
// resolves the API endpoints from defaults, a discovery file, and environment
// overrides.
package endpoints

const (
	AdobeBaseURL   = "https://www.adobe.com"
	AcrobatBaseURL = "https://acroipm2.adobe.com"
	IMSBaseURL     = "https://adobeid-na1.services.adobe.com"
)

// Public conversion pages. The session is initialized against one of these.
const (
	PDFToWordPage  = AdobeBaseURL + "/acrobat/online/pdf-to-word.html"
	PDFToExcelPage = AdobeBaseURL + "/acrobat/online/pdf-to-excel.html"
	PDFToPPTPage   = AdobeBaseURL + "/acrobat/online/pdf-to-ppt.html"
)

// Unity workflow assets served alongside the conversion pages.
const (
	UnityWorkflowBase    = AdobeBaseURL + "/unitylibs/core/workflow"
	UnityWorkflowJS      = UnityWorkflowBase + "/workflow.js"
	UnityWorkflowAcrobat = UnityWorkflowBase + "/workflow-acrobat"
	UnityTargetConfig    = UnityWorkflowAcrobat + "/target-config.json"
	UnityActionBinder    = UnityWorkflowAcrobat + "/action-binder.js"
)

const (
	AcrobatWebBase     = AcrobatBaseURL + "/acrobat-web"
	AcrobatMachineBase = AcrobatWebBase + "/machine"
	AcrobatUnityDC     = AcrobatMachineBase + "/unity-dc-frictionless"
)

// Default document API endpoints. Real deployments override these through a
// discovery file or ADOBE_HELPER_*_URL variables.
const (
	APIBase     = AdobeBaseURL + "/dc-api"
	APIUpload   = APIBase + "/upload"
	APIConvert  = APIBase + "/convert"
	APIStatus   = APIBase + "/status"
	APIDownload = APIBase + "/download"
)

// Identity Management Services.
const (
	IMSAuthorize  = IMSBaseURL + "/ims/authorize/v2"
	IMSToken      = IMSBaseURL + "/ims/token/v3"
	IMSProfile    = IMSBaseURL + "/ims/profile/v1"
	IMSCheckToken = IMSBaseURL + "/ims/check/v6/token"

	IMSGuestClientID = "dc-prod-virgoweb"
	IMSGuestScope    = "AdobeID,openid,DCAPI,additional_info.account_type,additional_info.optionalAgreements," +
		"agreement_send,agreement_sign,sign_library_write,sign_user_read,sign_user_write," +
		"agreement_read,agreement_write,widget_read,widget_write,workflow_read,workflow_write," +
		"sign_library_read,sign_user_login,sao.ACOM_ESIGN_TRIAL,ee.dcweb"
	IMSJSLVersion = "v1-v0.49.0-1-g118f48c"
	IMSOrigin     = AdobeBaseURL
	IMSReferer    = PDFToWordPage
)

const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// UserAgents is the rotation pool for new sessions.
var UserAgents = []string{
	DefaultUserAgent,
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36",
}

// CommonHeaders are sent with every API request.
func CommonHeaders() map[string]string {
	return map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"DNT":             "1",
	}
}

// SessionInitHeaders are sent on the first navigation to a public page.
// Adobe's edge rejects a Chrome user agent that arrives without the matching
// client hints.
func SessionInitHeaders() map[string]string {
	return map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9," +
			"image/avif,image/webp,image/apng,*/*;q=0.8," +
			"application/signed-exchange;v=b3;q=0.7",
		"Accept-Language":           "en-US,en;q=0.9",
		"DNT":                       "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"sec-ch-ua":                 `"Chromium";v="120", "Not=A?Brand";v="8", "Google Chrome";v="120"`,
		"sec-ch-ua-mobile":          "?0",
		"sec-ch-ua-platform":        `"macOS"`,
	}
}
