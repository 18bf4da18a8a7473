package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CallbackPayload is the MoMo IPN body. Field order in the signature
// string is fixed by the gateway (alphabetical by field name).
type CallbackPayload struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

func (p CallbackPayload) Succeeded() bool { return p.ResultCode == 0 }

// Signer computes and checks the gateway's HMAC-SHA256 signatures.
type Signer struct {
	AccessKey string
	SecretKey string
}

func (s Signer) sign(raw string) string {
	mac := hmac.New(sha256.New, []byte(s.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s Signer) SignCallback(p CallbackPayload) string {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		s.AccessKey, p.Amount, p.ExtraData, p.Message, p.OrderID, p.OrderInfo,
		p.OrderType, p.PartnerCode, p.PayType, p.RequestID, p.ResponseTime,
		p.ResultCode, p.TransID)
	return s.sign(raw)
}

// VerifyCallback recomputes the signature and compares in constant
// time. Must pass before anything touches the database.
func (s Signer) VerifyCallback(p CallbackPayload) bool {
	return hmac.Equal([]byte(s.SignCallback(p)), []byte(p.Signature))
}

// Gateway initiates payments against MoMo's transaction processor.
type Gateway struct {
	PartnerCode string
	Signer      Signer
	Endpoint    string
	RedirectURL string
	IPNURL      string
	HTTP        *http.Client
}

const requestType = "captureMoMoWallet"

type initiateRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
}

type InitiateResponse struct {
	PayURL     string `json:"payUrl"`
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// Initiate asks the gateway for a redirect URL for the given order.
func (g *Gateway) Initiate(ctx context.Context, orderID string, amount int64) (*InitiateResponse, error) {
	orderInfo := "Thanh toan don hang"
	raw := fmt.Sprintf(
		"partnerCode=%s&accessKey=%s&requestId=%s&amount=%d&orderId=%s&orderInfo=%s&returnUrl=%s&notifyUrl=%s&requestType=%s",
		g.PartnerCode, g.Signer.AccessKey, orderID, amount, orderID, orderInfo,
		g.RedirectURL, g.IPNURL, requestType)

	body := initiateRequest{
		PartnerCode: g.PartnerCode,
		AccessKey:   g.Signer.AccessKey,
		RequestID:   orderID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   orderInfo,
		RedirectURL: g.RedirectURL,
		IPNURL:      g.IPNURL,
		RequestType: requestType,
		Signature:   g.Signer.sign(raw),
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := g.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out InitiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return &out, nil
}
