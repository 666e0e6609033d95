package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// 集成测试辅助工具
//
// 集成测试走真实的HTTP接口，验证完整链路：
// Handler → UseCase → 乐观锁仓储 → MySQL，缓存失效 → Redis，事件 → RabbitMQ
//
// 运行方式：
//  1. docker compose up -d 启动MySQL/Redis/RabbitMQ
//  2. go run ./cmd/inventory 启动服务
//  3. INVENTORY_API_URL=http://localhost:8080/api/v1 go test -v ./test/integration/...
//
// 未设置INVENTORY_API_URL时测试跳过

const requestTimeout = 10 * time.Second

// apiBase 返回被测服务地址，未配置时跳过当前测试
func apiBase(t *testing.T) string {
	t.Helper()
	base := os.Getenv("INVENTORY_API_URL")
	if base == "" {
		t.Skip("未设置INVENTORY_API_URL，跳过集成测试")
	}
	return base
}

// Response 统一响应结构
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InventoryData 库存行响应数据
type InventoryData struct {
	ID        string `json:"id"`
	StoreID   string `json:"store_id"`
	Sku       string `json:"sku"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
	Committed int    `json:"committed"`
	Total     int    `json:"total"`
	Version   int64  `json:"version"`
}

// ReserveData 预留响应数据
type ReserveData struct {
	Success        bool   `json:"success"`
	ReservationID  string `json:"reservation_id"`
	RemainingStock int    `json:"remaining_stock"`
	Message        string `json:"message"`
}

// CommitData 提交响应数据
type CommitData struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id"`
	Committed     int    `json:"committed"`
}

// ReleaseData 释放响应数据
type ReleaseData struct {
	Success        bool   `json:"success"`
	ReservationID  string `json:"reservation_id"`
	Released       int    `json:"released"`
	AvailableStock int    `json:"available_stock"`
}

// PostJSON 发送POST请求并解析JSON响应
func PostJSON(t *testing.T, url string, data interface{}) *Response {
	t.Helper()

	jsonData, err := json.Marshal(data)
	require.NoError(t, err, "JSON序列化失败")

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	require.NoError(t, err, "创建HTTP请求失败")
	req.Header.Set("Content-Type", "application/json")

	return doRequest(t, req)
}

// GetJSON 发送GET请求并解析JSON响应
func GetJSON(t *testing.T, url string) *Response {
	t.Helper()

	req, err := http.NewRequest("GET", url, nil)
	require.NoError(t, err, "创建HTTP请求失败")

	return doRequest(t, req)
}

func doRequest(t *testing.T, req *http.Request) *Response {
	t.Helper()

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	require.NoError(t, err, "发送HTTP请求失败")
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "读取响应体失败")

	var result Response
	err = json.Unmarshal(body, &result)
	require.NoError(t, err, "解析JSON响应失败: %s", string(body))

	return &result
}

// GenerateTestSku 生成唯一的测试SKU（8-12位大写字母数字）
func GenerateTestSku() string {
	return fmt.Sprintf("T%011d", time.Now().UnixNano()%100000000000)
}

// CreateTestInventory 创建库存行并返回(storeID, sku)
// 每次调用使用新的storeID，测试之间互不干扰，可重复运行
func CreateTestInventory(t *testing.T, base string, initial int) (string, string) {
	t.Helper()

	storeID := uuid.NewString()
	sku := GenerateTestSku()

	resp := PostJSON(t, base+"/inventory", map[string]interface{}{
		"store_id":         storeID,
		"sku":              sku,
		"initial_quantity": initial,
	})
	require.Equal(t, 0, resp.Code, "创建库存行失败: %s", resp.Message)

	return storeID, sku
}

// ReserveTestStock 预留库存并返回reservation_id
func ReserveTestStock(t *testing.T, base, storeID, sku string, quantity int) string {
	t.Helper()

	resp := PostJSON(t, base+"/reservations", map[string]interface{}{
		"store_id": storeID,
		"sku":      sku,
		"quantity": quantity,
		"reason":   "集成测试下单",
	})
	require.Equal(t, 0, resp.Code, "预留请求失败: %s", resp.Message)

	var data ReserveData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.True(t, data.Success, "预留未成功: %s", data.Message)
	require.NotEmpty(t, data.ReservationID)

	return data.ReservationID
}

// GetTestInventory 查询单行库存
func GetTestInventory(t *testing.T, base, storeID, sku string) InventoryData {
	t.Helper()

	resp := GetJSON(t, fmt.Sprintf("%s/stores/%s/inventory/%s", base, storeID, sku))
	require.Equal(t, 0, resp.Code, "查询库存失败: %s", resp.Message)

	var data InventoryData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}
